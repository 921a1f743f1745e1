package scratchpad

// CRCInit is the initial value of CRC16.
const CRCInit uint16 = 0xffff

// CRC16 updates crc with data using CRC-16-CCITT (polynomial 0x1021).
// Start with CRCInit.
func CRC16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = (crc >> 8) | (crc << 8)
		crc ^= uint16(b)
		crc ^= (crc & 0xff) >> 4
		crc ^= crc << 12
		crc ^= (crc & 0xff) << 5
	}
	return crc
}
