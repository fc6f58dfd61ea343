package recipekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Key
	}{
		{"canonical", "https://www.mock.com/Mikes_Chicken_Kiev/", "mock-com_mikes-chicken-kiev"},
		{"no www", "https://mock.com/Mikes_Chicken_Kiev/", "mock-com_mikes-chicken-kiev"},
		{"http with www", "http://www.mock.com/Mikes_Chicken_Kiev/", "mock-com_mikes-chicken-kiev"},
		{"bare host", "https://www.ruled.me/", "ruled-me"},
		{"nested path", "https://www.ketoconnect.net/recipe/keto-chili/", "ketoconnect-net_recipe_keto-chili"},
		{"punctuation run", "https://www.ruled.me/a--b__c/", "ruled-me_a-b-c"},
		{"uppercase scheme", "HTTPS://WWW.Mock.com/Pie", "mock-com_pie"},
		{"query string", "https://mock.com/pie/?page=2", "mock-com_pie_-page-2"},
		{"single trailing slash only", "https://mock.com/pie//", "mock-com_pie_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromURL(tt.url))
		})
	}
}

func TestFromURL_SchemeAndWWWInsensitive(t *testing.T) {
	for _, u := range []string{"mock.com/foo/bar", "ketoconnect.net/recipe/x-y/", "ruled.me"} {
		want := FromURL(u)
		assert.Equal(t, want, FromURL("http://"+u), u)
		assert.Equal(t, want, FromURL("https://"+u), u)
		assert.Equal(t, want, FromURL("https://www."+u), u)
	}
}

func TestFromURL_CharacterSet(t *testing.T) {
	urls := []string{
		"https://www.ruled.me/Keto Pie (Best!)/",
		"https://www.ketoconnect.net/recipe/crème-brûlée/",
		"https://example.com/a.b,c;d",
	}
	for _, u := range urls {
		k := string(FromURL(u))
		assert.Regexp(t, `^[a-z0-9_-]*$`, k, u)
		assert.NotContains(t, k, "--", u)
	}
}

func TestFromURL_Pure(t *testing.T) {
	u := "https://www.ruled.me/keto-pizza/"
	assert.Equal(t, FromURL(u), FromURL(u))
}
