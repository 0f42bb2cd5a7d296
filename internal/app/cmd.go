package app

// Command はautowheelバイナリのサブコマンド。
type Command string

const (
	CommandServe   Command = "serve"   // 公開APIと管理APIのHTTPサーバー
	CommandWorker  Command = "worker"  // フォローアップ通知と問い合わせの自動削除
	CommandMigrate Command = "migrate" // スキーマの適用
	// CommandHealthcheck はdistrolessイメージ内から自身の/healthを叩く。
	CommandHealthcheck  Command = "healthcheck"
	CommandBrowse       Command = "browse"        // 標準入力で在庫を検索する
	CommandHashPassword Command = "hash-password" // ADMIN_PASSWORD_HASH用のbcryptハッシュを出力する
)

var commands = map[string]Command{
	string(CommandServe):        CommandServe,
	string(CommandWorker):       CommandWorker,
	string(CommandMigrate):      CommandMigrate,
	string(CommandHealthcheck):  CommandHealthcheck,
	string(CommandBrowse):       CommandBrowse,
	string(CommandHashPassword): CommandHashPassword,
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 引数がない場合や未知の名前はserveとして扱う。
func ParseCommand(args []string) Command {
	if len(args) > 0 {
		if cmd, ok := commands[args[0]]; ok {
			return cmd
		}
	}
	return CommandServe
}
