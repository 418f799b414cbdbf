package iocli

//go:generate go tool moq -out io_mock.go . IO

// IO abstracts the terminal so CLI commands can be exercised in tests
// without a real tty. ReadPassword must not echo.
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
}
