package services

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"yelp-pins/models"
	"yelp-pins/utils"
)

type SummaryService struct {
	logger *utils.Logger
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

// Generate summarises the pins of one build. A pin whose rating is "0.0" or
// not a number counts as unrated.
func (s *SummaryService) Generate(pins []*models.Pin, malformed int) *models.PinSummary {
	report := &models.PinSummary{
		TotalPins:  len(pins),
		Malformed:  malformed,
		ByCategory: make(map[string]int),
	}

	var rated []*models.Pin
	var total float64
	for _, p := range pins {
		if p.Description != "" {
			report.ByCategory[p.Description]++
		}
		r, ok := ratingValue(p)
		if !ok {
			report.UnratedPins++
			continue
		}
		rated = append(rated, p)
		total += r
	}
	report.RatedPins = len(rated)
	if len(rated) == 0 {
		return report
	}
	report.AverageRating = round2(total / float64(len(rated)))

	sort.SliceStable(rated, func(i, j int) bool {
		ri, _ := ratingValue(rated[i])
		rj, _ := ratingValue(rated[j])
		return ri > rj
	})
	if len(rated) > 5 {
		report.TopRated = rated[:5]
	} else {
		report.TopRated = rated
	}
	return report
}

func ratingValue(p *models.Pin) (float64, bool) {
	r, err := strconv.ParseFloat(p.Rating, 64)
	if err != nil || r == 0 {
		return 0, false
	}
	return r, true
}

func (s *SummaryService) Print(w io.Writer, r *models.PinSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📍 PIN BUILD SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Pins emitted      : \033[1m%d\033[0m\n", r.TotalPins)
	fmt.Fprintf(w, "  Rated / unrated   : \033[1m%d / %d\033[0m\n", r.RatedPins, r.UnratedPins)
	fmt.Fprintf(w, "  Malformed entries : \033[1m%d\033[0m\n", r.Malformed)
	if r.RatedPins > 0 {
		fmt.Fprintf(w, "  Average rating    : \033[1;32m%.2f ★\033[0m\n", r.AverageRating)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Top 5 Highest Rated\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopRated) == 0 {
		fmt.Fprintf(w, "  No rated pins\n")
	} else {
		for i, p := range r.TopRated {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s \033[1;32m%s ★\033[0m\n",
				i+1, truncate(p.Name, 38), p.Rating)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Pins by Category\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ByCategory) == 0 {
		fmt.Fprintf(w, "  No category data\n")
	} else {
		type catCount struct {
			cat   string
			count int
		}
		var cats []catCount
		for cat, cnt := range r.ByCategory {
			cats = append(cats, catCount{cat, cnt})
		}
		sort.Slice(cats, func(i, j int) bool {
			if cats[i].count != cats[j].count {
				return cats[i].count > cats[j].count
			}
			return cats[i].cat < cats[j].cat
		})
		for _, cc := range cats {
			bar := strings.Repeat("█", cc.count)
			fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(cc.cat, 28), bar, cc.count)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
