package main

import (
	"bufio"
	"errors"
	"strings"

	"account_service/internal/auth"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func NewHashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash of a password (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordArg(cmd, args)
			if err != nil {
				return err
			}

			hasher, err := auth.NewPasswordHasher(cost)
			if err != nil {
				return err
			}

			hash, err := hasher.Hash(password)
			if err != nil {
				return err
			}

			cmd.Println(hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")

	return cmd
}

func passwordArg(cmd *cobra.Command, args []string) (string, error) {
	password := ""
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", errors.New("no password given")
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if len(password) > auth.MaxPasswordBytes {
		return "", errors.New("password is longer than 72 bytes")
	}

	return password, nil
}
