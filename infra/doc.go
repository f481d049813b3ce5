// Package infra groups the adapters behind the core interfaces: the paho
// broker client, knowledge store backends, the Redis report filter, metric
// sinks, Sentry and the MMT HTTP notifier.
package infra
