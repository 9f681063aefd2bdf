package vo_test

import (
	"testing"

	"github.com/bionicotaku/lingo-services-posts/internal/models/vo"
)

func TestContentInsightsEmpty(t *testing.T) {
	if !(vo.ContentInsights{}).Empty() {
		t.Fatalf("zero value must be empty")
	}

	cases := []struct {
		name     string
		insights vo.ContentInsights
	}{
		{"title only", vo.ContentInsights{Title: "t"}},
		{"description only", vo.ContentInsights{Description: "d"}},
		{"hashtags only", vo.ContentInsights{Hashtags: []string{"fyp"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.insights.Empty() {
				t.Fatalf("insights with %s must not be empty", tc.name)
			}
		})
	}
}
