package metrics

import "strconv"

func classNumberLabel(n uint16) string {
	return strconv.FormatUint(uint64(n), 10)
}

func zoneLabel(z uint32) string {
	return strconv.FormatUint(uint64(z), 10)
}
