package banner

import (
	"fmt"

	"commsdb/pkg/config"
)

const banner = `
 ██████╗ ██████╗ ███╗   ███╗███╗   ███╗███████╗    ██████╗ ██████╗
██╔════╝██╔═══██╗████╗ ████║████╗ ████║██╔════╝    ██╔══██╗██╔══██╗
██║     ██║   ██║██╔████╔██║██╔████╔██║███████╗    ██║  ██║██████╔╝
██║     ██║   ██║██║╚██╔╝██║██║╚██╔╝██║╚════██║    ██║  ██║██╔══██╗
╚██████╗╚██████╔╝██║ ╚═╝ ██║██║ ╚═╝ ██║███████║    ██████╔╝██████╔╝
 ╚═════╝ ╚═════╝ ╚═╝     ╚═╝╚═╝     ╚═╝╚══════╝    ╚═════╝ ╚═════╝
`

// PrintWithEff prints the startup banner using the effective config.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", eff.Addr)
	fmt.Printf("DB Path:  %s\n", eff.DBPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if eff.Source != "" {
		fmt.Printf("Config source: %s\n", eff.Source)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/messages - send a message (JSON: sender, recipient, subject, content, ...)")
	fmt.Println("GET  /v1/conversations?user=<id> - list a user's conversations")
	fmt.Println("GET  /v1/conversations/{id}/messages?limit=<n> - page a conversation")
	fmt.Println("GET  /v1/messages/search?user=<id>&q=<term> - search messages")
	fmt.Println("GET  /v1/users/{id}/unread - total unread count")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/messages' -d '{\"sender\":{\"id\":\"u1\"},\"recipient\":{\"id\":\"u2\"},\"content\":\"hello\"}'\n", eff.Addr)
	fmt.Printf("curl 'http://localhost%s/v1/conversations?user=u2'\n", eff.Addr)
}
