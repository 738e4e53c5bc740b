package main

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/faanross/simulacra_img/internal/carrier"
	"github.com/faanross/simulacra_img/internal/decoder"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Flags = getFlags()
	app.Action = run
	return app
}

// Ensure the encoder writes a carrier the decoder package can read back.
func TestEncoderRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "msg.txt")
	output := filepath.Join(dir, "out.bmp")
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, ioutil.WriteFile(input, []byte("from the command line"), 0600))
	require.NoError(t, ioutil.WriteFile(cfg, []byte("crypto:\n  pbkdf2:\n    iterations: 1000\n"), 0600))

	err := newApp().Run([]string{"encoder", "-i", input, "-o", output, "-c", cfg,
		"-p", "password", "--analyze", "-l", "error"})
	require.NoError(t, err)

	img, err := carrier.Load(output)
	require.NoError(t, err)
	opts := decoder.DefaultOptions()
	opts.Iterations = 1000
	result, err := decoder.Reveal(img, []byte("password"), opts)
	require.NoError(t, err)
	require.Equal(t, "from the command line", string(result.Message))
}

func TestEncoderRejectsShortPassword(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "msg.txt")
	require.NoError(t, ioutil.WriteFile(input, []byte("x"), 0600))
	err := newApp().Run([]string{"encoder", "-i", input, "-p", "short", "-l", "error"})
	require.Error(t, err)
}

func TestEncoderRequiresInput(t *testing.T) {
	err := newApp().Run([]string{"encoder", "-p", "password", "-l", "error"})
	require.Error(t, err)
}
