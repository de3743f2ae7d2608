// Package testutil contains helper builders and test doubles used across
// tests to reduce boilerplate when constructing rosters and scripting planner
// and provider behavior. These helpers are intentionally minimal and avoid
// adding third‑party dependencies. They are not intended for production usage.
package testutil
