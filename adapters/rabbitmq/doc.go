/*
Package rabbitmq publishes events to a durable topic exchange over AMQP.
The connection is shared per bus instance and established lazily with
double-checked locking; connection-level failures tear the handle down so the
next publish reconnects. The routing key is the lowercased event type.
*/
package rabbitmq
