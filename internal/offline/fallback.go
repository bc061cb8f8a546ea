package offline

import (
	"net/http"
)

// OfflineNotice is the headline of the synthesized offline page.
const OfflineNotice = "You're offline"

const offlineHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Offline</title>
<style>
body{font-family:system-ui,sans-serif;display:flex;min-height:100vh;margin:0;align-items:center;justify-content:center;background:#0f172a;color:#e2e8f0;text-align:center}
button{margin-top:1rem;padding:.5rem 1rem;border:0;border-radius:.375rem;background:#6366f1;color:#fff;cursor:pointer}
</style>
</head>
<body>
<main>
<h1>` + OfflineNotice + `</h1>
<p>Check your internet connection and try again.</p>
<button onclick="location.reload()">Retry</button>
</main>
</body>
</html>
`

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="200" viewBox="0 0 200 200">` +
	`<rect width="200" height="200" fill="#e5e7eb"/>` +
	`<text x="100" y="105" font-family="sans-serif" font-size="14" text-anchor="middle" fill="#6b7280">Image unavailable</text>` +
	`</svg>`

// OfflinePage returns the HTML served for failed navigations.
func OfflinePage() []byte { return []byte(offlineHTML) }

// PlaceholderSVG returns the image served for failed image requests.
func PlaceholderSVG() []byte { return []byte(placeholderSVG) }

func offlineResponse() *Response {
	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	return &Response{Status: http.StatusOK, Header: h, Body: OfflinePage(), Type: TypeBasic}
}

func placeholderResponse() *Response {
	h := http.Header{}
	h.Set("Content-Type", "image/svg+xml")
	h.Set("Cache-Control", "no-store")
	return &Response{Status: http.StatusOK, Header: h, Body: PlaceholderSVG(), Type: TypeBasic}
}

func unavailableResponse() *Response {
	h := http.Header{}
	h.Set("Cache-Control", "no-store")
	return &Response{Status: http.StatusServiceUnavailable, Header: h, Body: []byte{}, Type: TypeBasic}
}
