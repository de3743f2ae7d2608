// Package routing decides which agent should first receive a user message.
// The Service scores every receiving-capable agent in the roster by lexical
// overlap with its declared skills, organizational fit against the detected
// intent, and a small continuity bonus for the previously active agent, then
// normalizes the winner's score into a [0,1] confidence. Routing is a pure
// function over its inputs: it never errors and degrades to the configured
// default agent when no candidate clears the minimum threshold.
package routing
