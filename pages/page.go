// Package pages renders the six navigation pages of the web UI.
package pages

import (
	"fmt"
	"strings"

	"parbi/classify"
)

// ErrInvalidSelection is shared with classify so callers match one sentinel.
var ErrInvalidSelection = classify.ErrInvalidSelection

type Page int

const (
	Home Page = iota
	Explore
	FeatureEngineering
	Prediction
	AboutUs
	ContactUs
)

// AllPages lists pages in navigation order.
var AllPages = []Page{Home, Explore, FeatureEngineering, Prediction, AboutUs, ContactUs}

var pageInfo = map[Page]struct{ label, slug string }{
	Home:               {"Home", "home"},
	Explore:            {"Explore", "explore"},
	FeatureEngineering: {"Feature Engineering", "feature-engineering"},
	Prediction:         {"Prediction", "prediction"},
	AboutUs:            {"About Us", "about-us"},
	ContactUs:          {"Contact Us", "contact-us"},
}

// ParsePage accepts a label or slug, case-insensitively.
func ParsePage(s string) (Page, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, p := range AllPages {
		info := pageInfo[p]
		if needle == strings.ToLower(info.label) || needle == info.slug {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown page %q", ErrInvalidSelection, s)
}

func (p Page) Valid() bool {
	_, ok := pageInfo[p]
	return ok
}

func (p Page) String() string {
	if info, ok := pageInfo[p]; ok {
		return info.label
	}
	return fmt.Sprintf("Page(%d)", int(p))
}

func (p Page) Slug() string {
	return pageInfo[p].slug
}

func (p Page) URL() string {
	return "/page/" + p.Slug()
}
