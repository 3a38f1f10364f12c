// Package api provides the HTTP server for the site administration console.
//
// # Overview
//
// The server signs administrators in through an external identity provider,
// issues a session cookie and exposes the roster operations behind the auth
// gate. Responses are JSON.
//
// # Routes
//
//	GET  /                 index with the login link
//	GET  /login            redirect to the identity provider
//	GET  /callback         finish sign-in, set the session cookie
//	GET  /logout           clear the session cookie
//	GET  /protected_area   dashboard (gated)
//	GET|POST /add_admin    add or reactivate an admin (gated)
//	GET|POST /delete_admin deactivate an admin (gated)
//	GET|POST /update_admin rename or reactivate an admin (gated)
//	GET  /admins           roster (gated)
//	GET  /admins/{id}      one admin (gated)
//
// Directory errors are mapped to statuses in one place, directoryErrorStatus:
// validation and conflicts are 400, unknown admins 404 and store failures
// 500 with a generic message.
//
// # Usage
//
//	server := api.NewServer(dir, provider, tokens,
//		api.WithLogger(logger),
//		api.WithMetrics(metrics),
//		api.WithProviderTimeout(cfg.Auth.ProviderTimeout),
//	)
//	http.ListenAndServe(":8080", server.Handler())
package api
