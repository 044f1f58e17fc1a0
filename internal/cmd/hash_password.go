package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c2tech/dashauth/password"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Hash a password for the user store",
	Long: `Print a bcrypt hash (or an argon2id PHC string with --argon2) suitable for
the password_hash column of the user store. Without an argument the password
is read from the first line of stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashPassword,
}

var (
	hashCost   int
	hashArgon2 bool
)

func init() {
	hashPasswordCmd.Flags().IntVar(&hashCost, "cost", 0, "bcrypt cost (default auth.password.bcrypt_cost)")
	hashPasswordCmd.Flags().BoolVar(&hashArgon2, "argon2", false, "emit an argon2id hash instead of bcrypt")
	rootCmd.AddCommand(hashPasswordCmd)
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	var secret string
	if len(args) == 1 {
		secret = args[0]
	} else {
		line, err := readLine(cmd.InOrStdin())
		if err != nil {
			return err
		}
		secret = line
	}

	cost := hashCost
	if cost == 0 {
		cfg, err := loadConfig(configPath, nil)
		if err != nil {
			return err
		}
		cost = cfg.Auth.Password.BcryptCost
	}

	hash, err := hashSecret(secret, cost, hashArgon2)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
	return err
}

func hashSecret(secret string, cost int, argon bool) (string, error) {
	if secret == "" {
		return "", errors.New("password is empty")
	}

	var h password.Hasher
	if argon {
		a, err := password.NewArgon2(password.DefaultArgon2Params())
		if err != nil {
			return "", err
		}
		h = a
	} else {
		b, err := password.NewBcrypt(cost)
		if err != nil {
			return "", err
		}
		h = b
	}
	return h.Hash(secret)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
