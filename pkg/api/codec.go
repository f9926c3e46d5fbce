package api

import (
	"encoding/json"
	"fmt"
)

// ByteArray это []byte, который сериализуется в JSON как обычный числовой
// массив ([1,2,3]), а не base64. Используется в формате бэкапа, чтобы строки
// оставались читаемыми независимо от транспорта.
type ByteArray []byte

// MarshalJSON кодирует байты как массив чисел
func (b ByteArray) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	nums := make([]uint16, len(b))
	for i, v := range b {
		nums[i] = uint16(v)
	}
	return json.Marshal(nums)
}

// UnmarshalJSON декодирует массив чисел обратно в байты.
// Значения вне диапазона 0..255 считаются ошибкой формата.
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("byte array: %w", err)
	}
	out := make([]byte, len(nums))
	for i, v := range nums {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte array: value %d out of range at index %d", v, i)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}
