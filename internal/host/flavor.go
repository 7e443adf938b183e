package host

import (
	"fmt"
	"sort"
	"strings"
)

// RootID is the ID of the invisible tree root.
const RootID = "0"

// Container is a built-in root folder of a browser.
type Container struct {
	ID    string
	Title string
}

// Flavor describes the root containers a browser ships with.
type Flavor struct {
	Name  string
	Roots []Container
}

var flavors = map[string]Flavor{
	"chrome": {Name: "chrome", Roots: []Container{
		{ID: "1", Title: "Bookmarks Bar"},
		{ID: "2", Title: "Other Bookmarks"},
		{ID: "3", Title: "Mobile Bookmarks"},
	}},
	"firefox": {Name: "firefox", Roots: []Container{
		{ID: "menu________", Title: "Bookmarks Menu"},
		{ID: "toolbar_____", Title: "Bookmarks Toolbar"},
		{ID: "unfiled_____", Title: "Other Bookmarks"},
		{ID: "mobile______", Title: "Mobile Bookmarks"},
	}},
	"edge": {Name: "edge", Roots: []Container{
		{ID: "1", Title: "Favorites bar"},
		{ID: "2", Title: "Other favorites"},
		{ID: "3", Title: "Mobile favorites"},
	}},
	"opera": {Name: "opera", Roots: []Container{
		{ID: "1", Title: "Speed Dial"},
		{ID: "2", Title: "Bookmarks bar"},
		{ID: "3", Title: "Unsorted Bookmarks"},
	}},
}

// LookupFlavor returns the named browser flavor (case-insensitive).
func LookupFlavor(name string) (Flavor, error) {
	f, ok := flavors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Flavor{}, fmt.Errorf("unknown tree flavor %q (known: %s)", name, strings.Join(FlavorNames(), ", "))
	}
	return f, nil
}

// FlavorNames lists the known flavors.
func FlavorNames() []string {
	names := make([]string, 0, len(flavors))
	for n := range flavors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
