// Package mysql persists the submission journal in MySQL, including the
// embedded schema migrations.
package mysql
