package mailtext

import (
	"io"
	"mime"
	"strings"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestClean(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("美团外卖 消费 32.40元"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		body        []byte
		contentType string
		want        string
	}{
		{
			name:        "html with entities and styles",
			body:        []byte(`<html><head><style>p{color:red}</style></head><body><p>交易成功</p><div>商户：星巴克&nbsp;&amp;&nbsp;咖啡</div><br/><td>金额</td><td>45.00</td></body></html>`),
			contentType: `text/html; charset="utf-8"`,
			want:        "交易成功\n商户:星巴克 & 咖啡\n金额 45.00",
		},
		{
			name:        "gbk plain text",
			body:        gbk,
			contentType: "text/plain; charset=gbk",
			want:        "美团外卖 消费 32.40元",
		},
		{
			name:        "full width forms fold",
			body:        []byte("实付：￥１９.８０\r\n\r\n（含配送费）"),
			contentType: "text/plain",
			want:        "实付:¥19.80\n(含配送费)",
		},
		{
			name:        "bad content type",
			body:        []byte("  合计 25.00  "),
			contentType: ";;;",
			want:        "合计 25.00",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Clean(tc.body, tc.contentType)
			if err != nil {
				t.Fatalf("Clean: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDecodeUnknownCharset(t *testing.T) {
	if _, err := Decode([]byte("x"), "klingon-8"); err == nil {
		t.Error("expected an error for an unknown charset")
	}
}

func TestCharsetReaderDecodesHeaders(t *testing.T) {
	dec := mime.WordDecoder{CharsetReader: CharsetReader}

	got, err := dec.DecodeHeader("=?GB2312?B?w8DNxc3iwvQ=?=")
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != "美团外卖" {
		t.Errorf("got %q, want 美团外卖", got)
	}

	r, err := CharsetReader("gbk", strings.NewReader("abc"))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(r)
	if string(b) != "abc" {
		t.Errorf("got %q, want abc", b)
	}
}
