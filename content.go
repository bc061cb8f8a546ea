package main

// SiteName is shown in the page title and the web app manifest.
const SiteName = "Zach Kordas-Potter"

// Tagline is the one-line introduction under the name.
const Tagline = "Software developer building small tools that work offline first."

var AboutMe = `I like software that earns its place: useful, quick, and still working when the
Wi-Fi drops. Most of my projects start as a small itch and turn into an excuse to learn a
new language, tool, or corner of the stack. Away from the keyboard I train Muay Thai and
shoot pool.`

// Project is one entry in the showcase.
type Project struct {
	Name    string
	Summary string
	Tags    []string
	URL     string
}

var Projects = []Project{
	{
		Name:    "Terminal mail",
		Summary: "A keyboard-driven email client for the terminal with fuzzy search across folders.",
		Tags:    []string{"Go", "TUI", "IMAP"},
	},
	{
		Name:    "Terminal music",
		Summary: "Streams YouTube Music from the command line by driving yt-dlp and mpv behind a TUI.",
		Tags:    []string{"Go", "TUI"},
	},
	{
		Name:    "Game recommender",
		Summary: "Recommends games from their descriptions using TF-IDF vectors and cosine similarity, with live filtering by rating.",
		Tags:    []string{"Python", "ML"},
	},
	{
		Name:    "This site",
		Summary: "A Go and gin portfolio that installs as a PWA and keeps working offline through a versioned cache.",
		Tags:    []string{"Go", "gin", "PWA"},
		URL:     "/",
	},
}
