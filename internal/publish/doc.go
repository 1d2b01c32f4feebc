// Package publish fans session changes out to external systems. Both
// publishers are engine observers; neither can block or fail the session.
//
//   - RedisMirror keeps the latest View under a key and publishes it on a
//     channel for display clients.
//   - KafkaPublisher emits one CheckoutEvent per checkout phase change.
package publish
