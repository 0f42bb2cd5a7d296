package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hitoshi/autowheel/internal/auth"
)

// runHashPassword は管理者パスワードのbcryptハッシュを出力する。
// 引数がなければ標準入力の1行目をパスワードとして読む。
func runHashPassword(in io.Reader, out io.Writer, args []string) error {
	var password string
	if len(args) > 0 {
		password = args[0]
	} else {
		reader := bufio.NewReader(in)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hashed)
	return nil
}
