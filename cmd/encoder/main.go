package main

import (
	"bytes"
	"io/ioutil"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/faanross/simulacra_img/internal/carrier"
	"github.com/faanross/simulacra_img/internal/config"
	"github.com/faanross/simulacra_img/internal/encoder"
	"github.com/faanross/simulacra_img/internal/entropy"
	"github.com/faanross/simulacra_img/internal/logger"
	"github.com/faanross/simulacra_img/internal/scrypto"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const version = "0.2.0"

func main() {
	app := cli.NewApp()
	app.Name = "encoder"
	app.Usage = "Conceal a file inside a generated carrier image"
	app.Version = version
	app.Flags = getFlags()
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString("encoder: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func getFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "input, i",
			Usage: "conceal the contents of `FILE`",
		},
		cli.StringFlag{
			Name:  "output, o",
			Usage: "write the carrier to `FILE` (.png or .bmp)",
			Value: "secure_stego.png",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load configuration from `FILE`",
		},
		cli.StringFlag{
			Name:  "password, p",
			Usage: "password (prompt if not provided)",
		},
		cli.BoolTFlag{
			Name:  "compress",
			Usage: "compress before encrypting when it helps",
		},
		cli.BoolFlag{
			Name:  "analyze, a",
			Usage: "report entropy metrics of the carrier",
		},
		cli.StringFlag{
			Name:  "level, l",
			Usage: "logging level [debug|info|warn|error]",
		},
	}
}

func run(c *cli.Context) error {
	cfg, err := config.NewConfig(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("level"); lvl != "" {
		if cfg.LogLevel, err = config.GetLogLevel(lvl); err != nil {
			return err
		}
	}
	if c.IsSet("compress") {
		cfg.Crypto.Compress = c.BoolT("compress")
	}
	log := logger.NewLogger(cfg.LogLevel)

	inputFile := c.String("input")
	if inputFile == "" {
		return errors.New("please provide an input file with --input")
	}
	message, err := ioutil.ReadFile(inputFile)
	if err != nil {
		return errors.Wrap(err, "reading input")
	}
	log.Infof("Input file: %s (%s)", inputFile, humanize.IBytes(uint64(len(message))))

	pass, err := readPassword(c.String("password"), cfg.Crypto.MinPasswordLength)
	if err != nil {
		return err
	}

	opts := encoder.DefaultOptions()
	opts.Sizer = cfg.Sizer()
	opts.CellSize = cfg.Carrier.CellSize
	opts.Iterations = cfg.Crypto.PBKDF2Iters
	opts.Compress = cfg.Crypto.Compress
	opts.Logger = log

	img, err := encoder.NewSecureStegoEncoder(message, pass, opts).CreateStegoImage()
	if err != nil {
		return errors.Wrap(err, "encoding failed")
	}

	if c.Bool("analyze") {
		entropy.Analyze(img).Log(log)
	}

	outputFile := c.String("output")
	if err := carrier.Save(outputFile, img); err != nil {
		return err
	}
	log.Infof("Carrier written to %s", outputFile)
	return nil
}

func readPassword(flagValue string, minLen int) ([]byte, error) {
	if flagValue != "" {
		if len(flagValue) < minLen {
			return nil, errors.Errorf("password must be at least %d characters", minLen)
		}
		return []byte(flagValue), nil
	}

	pass, err := scrypto.GetSecurePassword("Enter password: ", minLen)
	if err != nil {
		return nil, err
	}
	confirm, err := scrypto.GetSecurePassword("Confirm password: ", minLen)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(pass, confirm) {
		return nil, errors.New("passwords do not match")
	}
	return pass, nil
}
