// Package procregistry supervises detached background processes independently
// of any caller awaiting a single result. Records stay queryable and killable
// at any time; terminal records persist until age-based cleanup or shutdown.
package procregistry
