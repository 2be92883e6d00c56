package slip

import (
	"fmt"
	"strconv"
	"strings"
)

// PromptPay is the subset of a Thai PromptPay EMV QR payload we care about.
type PromptPay struct {
	MerchantID string `json:"merchant_id"`
	Amount     string `json:"amount"`
	Reference  string `json:"reference"`
	BillRef1   string `json:"bill_ref_1"`
	BillRef2   string `json:"bill_ref_2"`
}

type tlv struct {
	tag   string
	value string
}

// parseTLV splits an EMV tag-length-value string. Tags and lengths are two decimal digits.
func parseTLV(data string) ([]tlv, error) {
	var out []tlv
	for i := 0; i < len(data); {
		if i+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated header at %d", ErrMalformedPayload, i)
		}
		tag := data[i : i+2]
		n, err := strconv.Atoi(data[i+2 : i+4])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad length for tag %s", ErrMalformedPayload, tag)
		}
		i += 4
		if i+n > len(data) {
			return nil, fmt.Errorf("%w: tag %s overruns payload", ErrMalformedPayload, tag)
		}
		out = append(out, tlv{tag: tag, value: data[i : i+n]})
		i += n
	}
	return out, nil
}

// ParsePromptPay extracts merchant, amount and references from a PromptPay payload.
func ParsePromptPay(payload string) (*PromptPay, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}

	fields, err := parseTLV(payload)
	if err != nil {
		return nil, err
	}

	var info PromptPay
	for _, f := range fields {
		switch f.tag {
		case "29":
			sub, err := parseTLV(f.value)
			if err != nil {
				return nil, err
			}
			for _, s := range sub {
				if s.tag == "01" {
					info.MerchantID = formatPromptPayID(s.value)
				}
			}
		case "54":
			info.Amount = f.value
		case "62":
			sub, err := parseTLV(f.value)
			if err != nil {
				return nil, err
			}
			for _, s := range sub {
				switch s.tag {
				case "01":
					info.BillRef1 = s.value
				case "02":
					info.BillRef2 = s.value
				case "05":
					info.Reference = s.value
				}
			}
		}
	}
	return &info, nil
}

func formatPromptPayID(id string) string {
	switch {
	case len(id) == 13 && strings.HasPrefix(id, "0066"):
		phone := "0" + id[4:]
		return phone[:3] + "-" + phone[3:6] + "-" + phone[6:]
	case len(id) == 15 && strings.HasPrefix(id, "00"):
		c := id[2:]
		return c[:1] + "-" + c[1:5] + "-" + c[5:10] + "-" + c[10:12] + "-" + c[12:]
	case len(id) == 15 && strings.HasPrefix(id, "01"):
		return id[2:]
	}
	return id
}
