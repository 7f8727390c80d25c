/*
Package session serializes conversation turns and orchestrates state
persistence.

Turn handling is a read-modify-write over the conversation state with no
cross-key transaction, so concurrent turns for the same conversation id
must never overlap. The Manager guarantees that within a process, and an
optional distributed locker extends the guarantee across replicas.
*/
package session
