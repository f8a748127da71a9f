// Package group manages named sample groups.
//
// A group is a set of searches. Its membership is not stored: it is
// derived on read by unioning the sample hits of every completed
// search attached to the group, so members appear as the underlying
// searches complete.
package group
