// Package router decides, per request, whether a topic serves its
// cached canonical episode or falls through to fresh generation.
package router
