package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/faanross/simulacra_img/internal/carrier"
	"github.com/faanross/simulacra_img/internal/config"
	"github.com/faanross/simulacra_img/internal/decoder"
	"github.com/faanross/simulacra_img/internal/entropy"
	"github.com/faanross/simulacra_img/internal/logger"
	"github.com/faanross/simulacra_img/internal/scrypto"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

const version = "0.2.0"

func main() {
	app := cli.NewApp()
	app.Name = "decoder"
	app.Usage = "Recover a file concealed in a carrier image"
	app.Version = version
	app.Flags = getFlags()
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		os.Stderr.WriteString("decoder: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func getFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "input, i",
			Usage: "read the carrier from `FILE`",
		},
		cli.StringFlag{
			Name:  "output, o",
			Usage: "save the recovered message to `FILE` (stdout if not provided)",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load configuration from `FILE`",
		},
		cli.StringFlag{
			Name:  "password, p",
			Usage: "password (prompt if not provided)",
		},
		cli.StringFlag{
			Name:  "trylist",
			Usage: "comma-separated passwords to try",
		},
		cli.BoolFlag{
			Name:  "analyze, a",
			Usage: "report entropy metrics only",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "print the full message instead of a preview",
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
	log := logger.NewLogger(cfg.LogLevel)

	inputFile := c.String("input")
	if inputFile == "" {
		return errors.New("please provide a carrier with --input")
	}
	img, err := carrier.Load(inputFile)
	if err != nil {
		return err
	}
	bounds := img.Bounds()
	log.Infof("Carrier %s: %dx%d", inputFile, bounds.Dx(), bounds.Dy())

	if c.Bool("analyze") {
		entropy.Analyze(img).Log(log)
		return nil
	}

	opts := decoder.DefaultOptions()
	opts.Iterations = cfg.Crypto.PBKDF2Iters
	opts.Logger = log

	var result *decoder.ExtractedMessage
	if list := c.String("trylist"); list != "" {
		result, _, err = decoder.TryPasswords(img, strings.Split(list, ","), opts)
	} else {
		var pass []byte
		if p := c.String("password"); p != "" {
			pass = []byte(p)
		} else if pass, err = scrypto.GetSecurePassword("Enter password: ", 0); err != nil {
			return err
		}
		result, err = decoder.Reveal(img, pass, opts)
	}
	if err != nil {
		return errors.Wrap(err, "decoding failed")
	}

	log.Infof("Encrypted size: %d bytes, decrypted size: %d bytes, compressed: %v",
		result.EncryptedSize, result.DecryptedSize, result.WasCompressed)

	if outputFile := c.String("output"); outputFile != "" {
		if err := ioutil.WriteFile(outputFile, result.Message, 0600); err != nil {
			return errors.Wrap(err, "saving output")
		}
		log.Infof("Message saved to: %s", outputFile)
		return nil
	}

	message := string(result.Message)
	if c.Bool("verbose") || len(message) <= 500 {
		fmt.Println(message)
		return nil
	}
	fmt.Printf("%s\n... [%d more characters] ...\n%s\n",
		message[:200], len(message)-400, message[len(message)-200:])
	log.Info("Use --verbose to see the full message")
	return nil
}
