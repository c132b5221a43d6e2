package domain

import (
	"fmt"
	"strings"
)

// Region selects the backend provider a deployment talks to.
type Region string

const (
	// RegionCN is served by CloudBase.
	RegionCN Region = "cn"
	// RegionINTL is served by Supabase.
	RegionINTL Region = "intl"
)

func ParseRegion(s string) (Region, error) {
	switch r := Region(strings.ToLower(strings.TrimSpace(s))); r {
	case RegionCN, RegionINTL:
		return r, nil
	case "china", "zh":
		return RegionCN, nil
	case "international", "global":
		return RegionINTL, nil
	}
	return "", fmt.Errorf("unknown region %q", s)
}

func (r Region) String() string {
	return string(r)
}
