package components

import (
	"fmt"
	"net/url"

	"github.com/dasdy/gridsync/model"
)

// toggleURL returns the endpoint that flips visibility of a column.
func toggleURL(key model.Key) string {
	return "/views/columns/" + url.PathEscape(string(key))
}

// groupURL returns the endpoint that opens or closes a column group.
func groupURL(key model.Key, open bool) string {
	return fmt.Sprintf("/views/groups/%s?open=%t", url.PathEscape(string(key)), open)
}

func scrollURL(role model.Role) string {
	return "/views/scroll/" + role.String()
}

// groupToggleText is the marker shown next to an expandable group header.
func groupToggleText(open bool) string {
	if open {
		return "[-]"
	}

	return "[+]"
}
