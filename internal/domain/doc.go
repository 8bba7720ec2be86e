// Package domain contains the core entities of the progress-telemetry
// engine: tasks, their immutable progress events, and the chat/auth
// entities the surrounding glue persists. Entities validate themselves;
// persistence and transactional rules live in the store and service
// layers.
package domain
