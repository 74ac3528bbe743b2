package prompt

import (
	"context"
	"fmt"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
)

// CachePrompt asks the operator whether a cached history should be used
// instead of fetching it again. An empty answer fetches again.
type CachePrompt struct {
	In Input
}

func (p *CachePrompt) ReuseSnapshot(_ context.Context, snapshot *e.Snapshot) bool {
	out := p.In.Out()

	fmt.Fprintln(out, "\nCached history found:")
	fmt.Fprintf(out, "   Chat: %s\n", snapshot.ChatTitle)
	fmt.Fprintf(out, "   Messages: %d\n", len(snapshot.Messages))
	fmt.Fprintf(out, "   Updated: %s\n", snapshot.UpdatedAt().Format("2006-01-02 15:04"))

	for {
		answer, err := p.In.Ask("\nUse cached history? (y/N): ")
		if err != nil {
			return false
		}

		if answer == "" {
			return false
		}

		if yes, ok := YesNo(answer); ok {
			return yes
		}

		fmt.Fprintln(out, "Please answer 'y' for yes or 'n' for no.")
	}
}
