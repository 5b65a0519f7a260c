package planner

import "strconv"

// photosPerPage is the grid capacity per trim size.
var photosPerPage = map[string]int{
	"8x8":   4,
	"10x10": 6,
	"8x10":  4,
	"10x8":  6,
	"11x14": 9,
}

// PhotosPerPage returns the grid capacity of a trim, 4 for unknown trims.
func PhotosPerPage(trim string) int {
	if n, ok := photosPerPage[trim]; ok {
		return n
	}
	return 4
}

// gridLayout picks the layout for a page holding count photos.
func gridLayout(count int) string {
	switch {
	case count == 1:
		return "single"
	case count == 2:
		return "two_column"
	case count <= 4:
		return "grid_2x2"
	case count <= 6:
		return "grid_2x3"
	}
	return "grid_3x3"
}

// BuildPages lays out the page sequence: front cover, optional map page,
// chapter dividers each followed by their photo grids, then the back cover.
func BuildPages(plan *BookPlan, in Input, trim string) []Page {
	perPage := PhotosPerPage(trim)
	var pages []Page
	add := func(p Page) {
		p.Index = len(pages)
		pages = append(pages, p)
	}

	hero := ""
	switch {
	case len(plan.Highlights) > 0:
		hero = plan.Highlights[0].AssetID
	case len(in.Assets) > 0:
		hero = in.Assets[0].ID
	}
	front := Page{Type: PageFrontCover, Title: plan.Title, Subtitle: plan.Subtitle}
	if hero != "" {
		front.AssetIDs = []string{hero}
	}
	add(front)

	if plan.MapOrGallery == OutputMap {
		add(Page{Type: PageMap, Title: plan.Title, Subtitle: plan.StopLegend.Overflow})
	}

	grids := func(ids []string) {
		for start := 0; start < len(ids); start += perPage {
			batch := ids[start:min(start+perPage, len(ids))]
			add(Page{Type: PagePhotoGrid, AssetIDs: batch, Layout: gridLayout(len(batch))})
		}
	}

	if len(plan.Chapters) == 0 {
		var ids []string
		for _, d := range in.Days {
			ids = append(ids, d.AssetIDs...)
		}
		grids(ids)
	} else {
		byIndex := map[int][]string{}
		for _, d := range in.Days {
			byIndex[d.DayIndex] = d.AssetIDs
		}
		for _, ch := range plan.Chapters {
			add(Page{Type: PageChapterDivider, Title: ch.CityLabel, Subtitle: dayRange(ch)})
			var ids []string
			for day := ch.StartDayIndex; day <= ch.EndDayIndex; day++ {
				ids = append(ids, byIndex[day]...)
			}
			grids(ids)
		}
	}

	add(Page{Type: PageBackCover, Title: "© " + plan.Title, Subtitle: plan.Blurb})
	return pages
}

func dayRange(ch Chapter) string {
	if ch.StartDayIndex == ch.EndDayIndex {
		return "Day " + strconv.Itoa(ch.StartDayIndex+1)
	}
	return "Days " + strconv.Itoa(ch.StartDayIndex+1) + "-" + strconv.Itoa(ch.EndDayIndex+1)
}
