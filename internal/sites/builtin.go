package sites

import "regexp"

var (
	ketoconnectRules = []Rule{
		{
			// category pages, e.g. https://www.ketoconnect.net/desserts/
			Allow:         []*regexp.Regexp{regexp.MustCompile(`https://www.ketoconnect.net/\w+(-\w+)*/$`)},
			RestrictXPath: `//div[@id="tve_editor"]//span[@class="tve_custom_font_size rft"]`,
			Follow:        true,
		},
		{
			// e.g. https://www.ketoconnect.net/recipe/spicy-cilantro-dressing/
			Allow:         []*regexp.Regexp{regexp.MustCompile(`https://www.ketoconnect.net/recipe/\w+(-\w+)*/$`)},
			RestrictXPath: `//div[@class="tve_post tve_post_width_4"]`,
			Callback:      true,
		},
	}

	ruledMeRules = []Rule{
		{
			// category pages, e.g. https://www.ruled.me/keto-recipes/breakfast/
			Allow:         []*regexp.Regexp{regexp.MustCompile(`https://www.ruled.me/keto-recipes/\w+(-\w+)*/$`)},
			RestrictXPath: `//div[@class="r-list"]`,
			Follow:        true,
		},
		{
			// e.g. https://www.ruled.me/keto-recipes/dinner/page/2/
			Allow:  []*regexp.Regexp{regexp.MustCompile(`https://www.ruled.me/keto-recipes/\w+(\w+)*/page/\d+/`)},
			Follow: true,
		},
		{
			// e.g. https://www.ruled.me/easy-keto-cordon-bleu/
			Allow:         []*regexp.Regexp{regexp.MustCompile(`https://www.ruled.me/(\w+-)+\w+/$`)},
			RestrictXPath: `//div[@id="content"]`,
			Callback:      true,
		},
	}
)

// Ketoconnect crawls ketoconnect.net.
func Ketoconnect() *Site {
	return &Site{
		ID:             "ketoconnect",
		AllowedDomains: []string{"ketoconnect.net"},
		StartURLs:      []string{"https://www.ketoconnect.net/recipes/"},
		Rules:          ketoconnectRules,
		Strategy:       FirstOf(OpenGraph, TVEditorJPEG),
	}
}

// RuledMe crawls ruled.me. Pages without og:image are not guessed at.
func RuledMe() *Site {
	return &Site{
		ID:             "ruled-me",
		AllowedDomains: []string{"ruled.me"},
		StartURLs:      []string{"https://www.ruled.me/keto-recipes/"},
		Rules:          ruledMeRules,
		Strategy:       FirstOf(OpenGraph),
	}
}

// KetoconnectLegacy is ketoconnect with the older positional heuristic.
func KetoconnectLegacy() *Site {
	s := Ketoconnect()
	s.ID = "ketoconnect-legacy"
	s.Strategy = FirstOf(SecondImage)
	return s
}

// RuledMeLegacy is ruled-me with the older positional heuristic.
func RuledMeLegacy() *Site {
	s := RuledMe()
	s.ID = "ruled-me-legacy"
	s.Strategy = FirstOf(FirstImage)
	return s
}

// Default returns the registry of every built-in site.
func Default() *Registry {
	r, err := NewRegistry(Ketoconnect(), RuledMe(), KetoconnectLegacy(), RuledMeLegacy())
	if err != nil {
		panic(err)
	}
	return r
}
