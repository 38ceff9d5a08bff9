package dfn

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrUnknownCategory is returned when a category name is not recognized.
var ErrUnknownCategory = errors.New("unknown category")

// Category is the semantic grouping of a definition file, inferred from the
// directory it lives in. The zero value means no category matched.
type Category uint8

const (
	Uncategorized Category = iota
	Items
	NPC
	Create
	Regions
	Misc
	Skills
	Location
	Menus
	Spells
	Newbie
	Titles
	Advance
	House
	Colors
	Spawn
	HTML
	Race
	Weather
	HardItems
	Command
	MsgBoard
	Carve
	Creatures
	Maps

	numCategories
)

var categoryNames = [numCategories]string{
	Items:     "items",
	NPC:       "npc",
	Create:    "create",
	Regions:   "regions",
	Misc:      "misc",
	Skills:    "skills",
	Location:  "location",
	Menus:     "menus",
	Spells:    "spells",
	Newbie:    "newbie",
	Titles:    "titles",
	Advance:   "advance",
	House:     "house",
	Colors:    "colors",
	Spawn:     "spawn",
	HTML:      "html",
	Race:      "race",
	Weather:   "weather",
	HardItems: "hard_items",
	Command:   "command",
	MsgBoard:  "msgboard",
	Carve:     "carve",
	Creatures: "creatures",
	Maps:      "maps",
}

// dirNames holds the canonical directory name for each category.
var dirNames = [numCategories]string{
	Items:     "items",
	NPC:       "npc",
	Create:    "create",
	Regions:   "regions",
	Misc:      "misc",
	Skills:    "skills",
	Location:  "location",
	Menus:     "menus",
	Spells:    "spells",
	Newbie:    "newbie",
	Titles:    "titles",
	Advance:   "advance",
	House:     "house",
	Colors:    "colors",
	Spawn:     "spawn",
	HTML:      "html",
	Race:      "race",
	Weather:   "weather",
	HardItems: "harditems",
	Command:   "command",
	MsgBoard:  "msgboard",
	Carve:     "carve",
	Creatures: "creatures",
	Maps:      "maps",
}

// Categories returns every category in declaration order.
func Categories() []Category {
	cats := make([]Category, 0, numCategories-1)
	for c := Items; c < numCategories; c++ {
		cats = append(cats, c)
	}
	return cats
}

// String returns the category tag, or "" for Uncategorized.
func (c Category) String() string {
	if c >= numCategories {
		return ""
	}
	return categoryNames[c]
}

// DirName returns the directory name used to recognize the category.
func (c Category) DirName() string {
	if c >= numCategories {
		return ""
	}
	return dirNames[c]
}

// ParseCategory accepts either a category tag or its directory name.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories() {
		if categoryNames[c] == name || dirNames[c] == name {
			return c, nil
		}
	}
	return Uncategorized, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// Classify returns the category whose directory name appears as a complete
// segment of the directory part of p. Either slash style is accepted. When
// several segments match, the first declared category wins.
func Classify(p string) Category {
	p = strings.ReplaceAll(p, `\`, "/")
	dir := path.Dir(p)
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	for _, c := range Categories() {
		if strings.Contains(dir, "/"+dirNames[c]+"/") {
			return c
		}
	}
	return Uncategorized
}

// ClassifyURI classifies the file-system path behind a document URI.
func ClassifyURI(uri string) Category {
	return Classify(PathFromURI(uri))
}

// PathFromURI converts a file URI to a slash-separated path. Input that is not
// a URI is returned unchanged.
func PathFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Single-letter schemes are Windows drive letters ("C:\...").
		return uri
	}
	p := u.Path
	if u.Host != "" && u.Host != "localhost" {
		p = "//" + u.Host + p
	}
	// file:///c:/dir -> c:/dir
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return p
}

// BaseName returns the file name of a document URI or path.
func BaseName(uri string) string {
	p := strings.ReplaceAll(PathFromURI(uri), `\`, "/")
	return path.Base(p)
}
