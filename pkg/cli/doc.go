// Package cli implements sitemgmtctl, the operator command line for the
// administrator roster.
//
// # Commands
//
//	sitemgmtctl add <email>                  add or reactivate an admin
//	sitemgmtctl deactivate <email>           deactivate an admin
//	sitemgmtctl update <old-email> [new]     rename, or reactivate without new
//	sitemgmtctl list [--json] [--all]        list admins
//	sitemgmtctl migrate                      apply schema migrations
//
// The command tree is built with cobra; `sitemgmtctl <command> --help`
// describes each command's flags.
//
// Commands go through the same directory rules as the web console, so
// emails are validated and normalized identically.
//
// The store is chosen from the SITEMGMT_STORE and SITEMGMT_DATABASE_DSN
// environment variables (or SITEMGMT_CONFIG_FILE).
package cli
