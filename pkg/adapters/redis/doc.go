// Package redis provides Redis-backed implementations of the persistence ports:
// definitions, run records and a distributed locker.
//
// Key layout, with the default "weft:" prefix:
//
//	weft:graph:<id>      encoded definition
//	weft:graph:index     ZSET of definition ids
//	weft:run:<id>        run record (JSON), optional TTL
//	weft:run:index       ZSET of run ids scored by expiry
//	weft:lock:<key>      distributed lock
package redis
