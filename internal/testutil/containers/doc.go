// Package containers starts Docker backed dependencies for integration tests
// using testcontainers-go:
//
//   - MySQL 8 for the gorm repositories
//   - Eclipse Mosquitto for the MQTT ingest subscriber
//   - ntfy for the shoutrrr notification channel
//
// Everything here is behind the "integration" build tag:
//
//	go test -tags=integration ./...
//
// Containers are normally started once per package from TestMain and
// terminated after m.Run returns.
package containers
