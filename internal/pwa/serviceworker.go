package pwa

const serviceWorkerSource = `// Generated by the portfolio server. Do not edit.
const CACHE_NAME = {{literal .CacheName}};
const CACHE_PREFIX = {{literal .Prefix}};
const PRECACHE_URLS = {{literal .Manifest}};
const FONT_HOSTS = {{literal .FontHosts}};
const SHELL_URLS = {{literal .Shell}};
const OFFLINE_HTML = {{literal .OfflineHTML}};
const PLACEHOLDER_SVG = {{literal .Placeholder}};

self.addEventListener('install', (event) => {
  event.waitUntil(
    caches.open(CACHE_NAME).then((cache) =>
      Promise.all(
        PRECACHE_URLS.map((url) =>
          fetch(url)
            .then((response) => {
              if (response.status === 200) {
                return cache.put(url, response);
              }
              console.warn('[sw] precache bad status', url, response.status);
            })
            .catch((err) => console.warn('[sw] precache failed', url, err))
        )
      )
    )
  );
});

self.addEventListener('activate', (event) => {
  event.waitUntil(
    caches
      .keys()
      .then((names) =>
        Promise.all(
          names
            .filter((name) => name.startsWith(CACHE_PREFIX) && name !== CACHE_NAME)
            .map((name) => caches.delete(name))
        )
      )
      .then(() => self.clients.claim())
  );
});

function cacheable(request, response) {
  if (!response || response.status !== 200) {
    return false;
  }
  if (response.type === 'basic') {
    return true;
  }
  return response.type === 'cors' && FONT_HOSTS.includes(new URL(request.url).hostname);
}

function store(request, response) {
  const copy = response.clone();
  caches
    .open(CACHE_NAME)
    .then((cache) => cache.put(request, copy))
    .catch((err) => console.warn('[sw] cache put failed', request.url, err));
}

async function matchShell(request) {
  const cache = await caches.open(CACHE_NAME);
  const hit = await cache.match(request);
  if (hit) {
    return hit;
  }
  for (const url of SHELL_URLS) {
    const shell = await cache.match(url);
    if (shell) {
      return shell;
    }
  }
  return undefined;
}

self.addEventListener('fetch', (event) => {
  const request = event.request;
  if (request.method !== 'GET') {
    return;
  }
  const url = new URL(request.url);
  if (url.protocol !== 'http:' && url.protocol !== 'https:') {
    return;
  }
  if (url.origin !== self.location.origin && !FONT_HOSTS.includes(url.hostname)) {
    return;
  }

  if (request.mode === 'navigate') {
    event.respondWith(
      matchShell(request).then(
        (cached) =>
          cached ||
          fetch(request)
            .then((response) => {
              if (response.status === 200 && response.type === 'basic') {
                store(request, response);
              }
              return response;
            })
            .catch(
              () =>
                new Response(OFFLINE_HTML, {
                  status: 200,
                  headers: { 'Content-Type': 'text/html; charset=utf-8' },
                })
            )
      )
    );
    return;
  }

  event.respondWith(
    caches.match(request, { cacheName: CACHE_NAME }).then(
      (cached) =>
        cached ||
        fetch(request)
          .then((response) => {
            if (cacheable(request, response)) {
              store(request, response);
            }
            return response;
          })
          .catch(() => {
            const accept = request.headers.get('Accept') || '';
            if (accept.includes('image/')) {
              return new Response(PLACEHOLDER_SVG, {
                status: 200,
                headers: { 'Content-Type': 'image/svg+xml' },
              });
            }
            return new Response('', { status: 503 });
          })
    )
  );
});
`
