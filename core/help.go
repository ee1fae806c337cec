package core

import (
	"github.com/jessevdk/go-flags"
)

// CreateHelpErr is returned by commands that were given -h so that main
// prints the help of the active command.
func CreateHelpErr() error {
	err := flags.Error{
		Type:    flags.ErrHelp,
		Message: "show help message",
	}
	return &err
}
