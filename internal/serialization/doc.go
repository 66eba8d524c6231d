// Package serialization saves and restores model parameters as checkpoints.
//
// A checkpoint is a single file:
//
//	[0x00..0x03] magic "DACK"
//	[0x04..0x07] format version (uint32 LE)
//	[0x08..0x0F] header size (uint64 LE)
//	[0x10..0x17] data size (uint64 LE)
//	[0x18..0x37] SHA-256 of the data section
//	[0x38..0x3F] reserved
//	[header]     JSON Header
//	[padding]    to a 64-byte boundary
//	[data]       float32 tensors, little endian, in header order
//
// Parameters are stored under "<index>.<name>" so that the repeated "weight"
// and "bias" names of a network stay distinct.
package serialization
