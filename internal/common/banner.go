package common

import (
	"fmt"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner with the settings that matter
// when reading a startup log
func PrintBanner(version string, config *Config) {
	b := banner.New().SetStyle(banner.StyleDouble).SetWidth(60)
	b.PrintTopLine()
	b.PrintCenteredText("DealDesk")
	b.PrintCenteredText("Research knowledge, chat and summaries")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", version, 12)
	b.PrintKeyValue("Address", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port), 12)
	b.PrintKeyValue("Storage", config.Storage.Type, 12)
	b.PrintKeyValue("Provider", string(config.LLM.DefaultProvider), 12)
	b.PrintBottomLine()
}
