package main

import (
	"fmt"
	"os"

	"github.com/danmuck/phonebook/internal/config"
	"github.com/spf13/pflag"
)

const defaultPath = "cmd/phonebookd/config.toml"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("configgen", pflag.ContinueOnError)
	output := flags.StringP("output", "o", defaultPath, "output path for the phonebookd config template")
	validate := flags.Bool("validate", false, "validate an existing config file instead of writing one")
	input := flags.String("input", defaultPath, "config path for --validate")
	force := flags.Bool("force", false, "overwrite an existing config file")
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if *validate {
		if _, err := config.Load(*input); err != nil {
			return err
		}
		fmt.Printf("validated phonebookd config at %s\n", *input)
		return nil
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		return err
	}
	fmt.Printf("wrote phonebookd config template to %s\n", *output)
	return nil
}
