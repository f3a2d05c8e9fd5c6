// Package iocli is the terminal side of the ledgersync CLI: output, line
// input and passphrase prompts.
package iocli

//go:generate moq -out io_mock.go . IO

// IO
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	// ReadPassword не показывает ввод, если stdin является терминалом
	ReadPassword(prompt string) (string, error)
	IsTerminal() bool
	Write(p []byte) (n int, err error)
}
