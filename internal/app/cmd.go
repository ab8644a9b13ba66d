package app

// Command はpostrelayバイナリのサブコマンド。
type Command string

const (
	// CommandServe は投稿中継APIを起動する。引数なしの場合もこれになる。
	CommandServe Command = "serve"
	// CommandHealthcheck は起動中のサーバーの /health を確認して終了する。
	// distrolessイメージにはcurlがないため、DockerのHEALTHCHECKから呼ぶ。
	CommandHealthcheck Command = "healthcheck"
)

// knownCommands は引数として受け付けるサブコマンド。
var knownCommands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 2番目以降の引数は無視し、未知の値はserveとして扱う。
func ParseCommand(args []string) Command {
	if len(args) > 0 {
		if cmd, ok := knownCommands[args[0]]; ok {
			return cmd
		}
	}
	return CommandServe
}
