// Package content holds the message template catalogs: tone-keyed
// engagement candidates, reminder templates, and broadcast templates.
//
// Templates are Liquid sources ({{ name }} placeholders) compiled once when a
// catalog is built. Catalogs are immutable after construction and safe for
// concurrent use.
package content
