package prompt

import (
	"fmt"
	"strconv"
)

// Credentials asks for the application id and hash that are not configured.
// They are issued at https://my.telegram.org/apps.
func Credentials(in Input, appID int, appHash string) (int, string, error) {
	out := in.Out()

	if appID == 0 || appHash == "" {
		fmt.Fprintln(out, "\nInitial setup: API credentials are required.")
		fmt.Fprintln(out, "Get them at https://my.telegram.org/apps")
	}

	for appID == 0 {
		answer, err := in.Ask("API ID: ")
		if err != nil {
			return 0, "", err
		}

		id, err := strconv.Atoi(answer)
		if err != nil || id <= 0 {
			fmt.Fprintln(out, "API ID must be a number.")
			continue
		}
		appID = id
	}

	for appHash == "" {
		answer, err := in.Ask("API hash: ")
		if err != nil {
			return 0, "", err
		}
		appHash = answer
	}

	return appID, appHash, nil
}
