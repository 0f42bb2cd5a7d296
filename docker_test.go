package autowheel_test

import (
	"os"
	"strings"
	"testing"
)

func readRepoFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("%s を読み込めない: %v", name, err)
	}
	return string(data)
}

// lastFrom はDockerfileの最終ステージのFROM行を返す。
func lastFrom(dockerfile string) string {
	var from string
	for _, line := range strings.Split(dockerfile, "\n") {
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "FROM ") {
			from = line
		}
	}
	return from
}

func TestDockerfile(t *testing.T) {
	content := readRepoFile(t, "Dockerfile")

	for _, want := range []string{
		"FROM golang:",
		"-o /out/autowheel ./cmd/autowheel",
		`ENTRYPOINT ["/autowheel"]`,
		`CMD ["serve"]`,
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Dockerfile に %q が含まれていない", want)
		}
	}
	if from := lastFrom(content); !strings.Contains(from, "distroless") {
		t.Errorf("実行ステージはdistrolessイメージを使う: %s", from)
	}
}

func TestDockerCompose(t *testing.T) {
	content := readRepoFile(t, "docker-compose.yml")

	tests := []struct {
		name string
		want string
	}{
		{"PostgreSQL", "image: postgres:"},
		{"APIサービス", `command: ["serve"]`},
		{"ワーカーサービス", `command: ["worker"]`},
		{"マイグレーションサービス", `command: ["migrate"]`},
		{"APIはマイグレーション完了後に起動", "service_completed_successfully"},
		{"distrolessにcurlがないためサブコマンドでヘルスチェック", `["CMD", "/autowheel", "healthcheck"]`},
		{"DBは内部ネットワークに閉じる", "internal: true"},
		{"SMTP送信用の外部ネットワーク", "external:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(content, tt.want) {
				t.Errorf("docker-compose.yml に %q が含まれていない", tt.want)
			}
		})
	}
}

func TestEnvExampleListsRequiredSettings(t *testing.T) {
	content := readRepoFile(t, ".env.example")

	for _, key := range []string{"DATABASE_URL=", "ADMIN_EMAIL=", "ADMIN_PASSWORD_HASH=", "SESSION_SECRET="} {
		if !strings.Contains(content, key) {
			t.Errorf(".env.example に %s がない", key)
		}
	}
}
