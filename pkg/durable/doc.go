/*
Package durable provides the BoltDB-backed task store that pkg/flush
drains its write-behind queue into and that the coordinator rebuilds its
cache from on startup.
*/
package durable
