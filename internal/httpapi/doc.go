// Package httpapi exposes the engine over HTTP: login, logout, identity,
// allowed companies and an admin view of a user's grants.
package httpapi
