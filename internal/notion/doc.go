// Package notion reads chore rules from a Notion database. Each row is one
// rule; its Korean column names are mapped to chore.Rule here and nowhere
// else.
package notion
