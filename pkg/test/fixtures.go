package test

import (
	"github.com/inbucket/mtahook/pkg/hook"
)

// RequestJSON is the documented sample request sent at the DATA stage.
const RequestJSON = `{
    "context": {
        "stage": "DATA",
        "sasl": {
            "login": "user",
            "method": "plain"
        },
        "client": {
            "ip": "192.168.1.1",
            "port": 34567,
            "ptr": "mail.example.com",
            "helo": "mail.example.com",
            "activeConnections": 1
        },
        "tls": {
            "version": "1.3",
            "cipher": "TLS_AES_256_GCM_SHA384",
            "cipherBits": 256,
            "certIssuer": "Let's Encrypt",
            "certSubject": "mail.example.com"
        },
        "server": {
            "name": "Stalwart",
            "port": 25,
            "ip": "192.168.2.2"
        },
        "queue": {
            "id": "1234567890"
        },
        "protocol": {
            "version": 1
        }
    },
    "envelope": {
        "from": {
            "address": "john@example.com",
            "parameters": {
                "size": "12345"
            }
        },
        "to": [
            {
                "address": "bill@foobar.com",
                "parameters": {
                    "orcpt": "rfc822; b@foobar.com"
                }
            },
            {
                "address": "jane@foobar.com",
                "parameters": null
            }
        ]
    },
    "message": {
        "headers": [
            ["From", "John Doe <john@example.com>"],
            ["To", "Bill <bill@foobar.com>, Jane <jane@foobar.com>"],
            ["Subject", "Hello, World!"]
        ],
        "serverHeaders": [
            ["Received", "from mail.example.com (mail.example.com [192.168.1.1]) by mail.foobar.com (Stalwart) with ESMTPS id 1234567890"]
        ],
        "contents": "Hello, World!\r\n",
        "size": 12345
    }
}`

// ResponseJSON is the documented sample response carrying one modification of each type.
const ResponseJSON = `{
    "action": "accept",
    "response": {
        "status": 250,
        "enhancedStatus": "2.0.0",
        "message": "Message accepted",
        "disconnect": false
    },
    "modifications": [
        {
            "type": "changeFrom",
            "value": "new@example.com",
            "parameters": {
                "size": "54321"
            }
        },
        {
            "type": "addRecipient",
            "value": "tom@example.com",
            "parameters": null
        },
        {
            "type": "deleteRecipient",
            "value": "jane@foobar.com"
        },
        {
            "type": "replaceContents",
            "value": "This is the new body\r\n"
        },
        {
            "type": "addHeader",
            "name": "X-Spam-Status",
            "value": "No"
        },
        {
            "type": "insertHeader",
            "index": 1,
            "name": "X-Filtered-By",
            "value": "Custom Filter v1.1"
        },
        {
            "type": "changeHeader",
            "index": 4,
            "name": "Subject",
            "value": "This is the new subject"
        },
        {
            "type": "deleteHeader",
            "index": 1,
            "name": "X-Mailer"
        }
    ]
}`

// Request returns the value RequestJSON decodes to.
func Request() *hook.Request {
	str := hook.StringPtr
	bits := uint16(256)
	return &hook.Request{
		Context: hook.Context{
			Stage: hook.StageData,
			Client: hook.Client{
				IP:                "192.168.1.1",
				Port:              34567,
				PTR:               str("mail.example.com"),
				HELO:              str("mail.example.com"),
				ActiveConnections: 1,
			},
			SASL: &hook.SASL{Login: "user", Method: str("plain")},
			TLS: &hook.TLS{
				Version: "1.3",
				Cipher:  "TLS_AES_256_GCM_SHA384",
				Bits:    &bits,
				Issuer:  str("Let's Encrypt"),
				Subject: str("mail.example.com"),
			},
			Server: hook.Server{
				Name: str("Stalwart"),
				Port: 25,
				IP:   str("192.168.2.2"),
			},
			Queue:    &hook.Queue{ID: "1234567890"},
			Protocol: hook.Protocol{Version: 1},
		},
		Envelope: &hook.Envelope{
			From: hook.Address{
				Address:    "john@example.com",
				Parameters: map[string]string{"size": "12345"},
			},
			To: []hook.Address{
				{
					Address:    "bill@foobar.com",
					Parameters: map[string]string{"orcpt": "rfc822; b@foobar.com"},
				},
				{Address: "jane@foobar.com"},
			},
		},
		Message: &hook.Message{
			Headers: []hook.Header{
				{Name: "From", Value: "John Doe <john@example.com>"},
				{Name: "To", Value: "Bill <bill@foobar.com>, Jane <jane@foobar.com>"},
				{Name: "Subject", Value: "Hello, World!"},
			},
			ServerHeaders: []hook.Header{
				{
					Name: "Received",
					Value: "from mail.example.com (mail.example.com [192.168.1.1]) " +
						"by mail.foobar.com (Stalwart) with ESMTPS id 1234567890",
				},
			},
			Contents: "Hello, World!\r\n",
			Size:     12345,
		},
	}
}

// Response returns the value ResponseJSON decodes to.
func Response() *hook.Response {
	status := uint16(250)
	return &hook.Response{
		Action: hook.ActionAccept,
		Response: &hook.SMTPResponse{
			Status:         &status,
			EnhancedStatus: hook.StringPtr("2.0.0"),
			Message:        hook.StringPtr("Message accepted"),
		},
		Modifications: []hook.Modification{
			hook.NewChangeFrom("new@example.com", hook.Parameters{"size": hook.StringPtr("54321")}),
			hook.NewAddRecipient("tom@example.com", nil),
			hook.NewDeleteRecipient("jane@foobar.com"),
			hook.NewReplaceContents("This is the new body\r\n"),
			hook.NewAddHeader("X-Spam-Status", "No"),
			hook.NewInsertHeader(1, "X-Filtered-By", "Custom Filter v1.1"),
			hook.NewChangeHeader(4, "Subject", "This is the new subject"),
			hook.NewDeleteHeader(1, "X-Mailer"),
		},
	}
}
