package banner

import (
	"fmt"

	"chatfront/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗███████╗██████╗  ██████╗ ███╗   ██╗████████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔════╝██╔══██╗██╔═══██╗████╗  ██║╚══██╔══╝
██║     ███████║███████║   ██║   █████╗  ██████╔╝██║   ██║██╔██╗ ██║   ██║
██║     ██╔══██║██╔══██║   ██║   ██╔══╝  ██╔══██╗██║   ██║██║╚██╗██║   ██║
╚██████╗██║  ██║██║  ██║   ██║   ██║     ██║  ██║╚██████╔╝██║ ╚████║   ██║
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝     ╚═╝  ╚═╝ ╚═════╝ ╚═╝  ╚═══╝   ╚═╝
`

// Print renders the startup banner using the effective config.
func Print(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:    %s\n", addr)
	fmt.Printf("Contexts:  %s\n", eff.DBPath)
	if eff.Config != nil {
		fmt.Printf("Webhook:   %s\n", eff.Config.Backend.WebhookURL)
		fmt.Printf("Identity:  %s\n", eff.Config.Identity.URL)
	}
	if version != "" {
		fmt.Printf("Version:   %s\n", version)
	}
	if eff.Source != "" {
		fmt.Printf("Config sources: %s\n", eff.Source)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /v1/chat                         - Current conversation state")
	fmt.Println("POST /v1/chat/messages                - Send a message (JSON: message)")
	fmt.Println("GET  /v1/chat/sessions                - List the user's sessions")
	fmt.Println("POST /v1/chat/sessions/{id}/select    - Switch to a session")
	fmt.Println("POST /v1/chat/new                     - Start a fresh chat")
	fmt.Println("POST /v1/auth/signup | signin | signout, GET /v1/auth/me")
}
