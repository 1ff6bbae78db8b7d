package switchclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeResponse(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		id          string
		success     bool
		status      string
		correlation string
		errMessage  string
	}{
		{name: "corpo vazio", body: "", success: true},
		{name: "texto puro", body: "OK", success: true},
		{
			name:        "envelope completo",
			body:        `{"success":true,"data":{"instructionId":"X1","codigo_referencia":"482913","estado":"COMPLETED"},"error":null}`,
			success:     true,
			status:      "COMPLETED",
			correlation: "482913",
		},
		{
			name:       "envelope com erro",
			body:       `{"success":false,"data":null,"error":{"code":"AC01","message":"invalid account"}}`,
			success:    false,
			errMessage: "AC01 invalid account",
		},
		{
			name:       "erro como texto sem success",
			body:       `{"error":"destination timeout"}`,
			success:    false,
			errMessage: "destination timeout",
		},
		{
			name:    "success false mas estado de sucesso",
			body:    `{"success":false,"data":{"estado":"QUEUED"}}`,
			success: true,
			status:  "QUEUED",
		},
		{
			name:        "legado plano",
			body:        `{"idInstruccion":"X2","estado":"COMPLETADA","codigoReferencia":123456}`,
			success:     true,
			status:      "COMPLETADA",
			correlation: "123456",
		},
		{
			name:       "legado plano rechazada",
			body:       `{"idInstruccion":"X3","estado":"RECHAZADA","mensaje":"AC04 cuenta cerrada"}`,
			success:    false,
			status:     "RECHAZADA",
			errMessage: "AC04 cuenta cerrada",
		},
		{
			name:    "legado plano só com id",
			body:    `{"id":"X4"}`,
			success: true,
		},
		{
			name:    "lista escolhe pelo id",
			body:    `[{"idInstruccion":"OTHER","estado":"FAILED"},{"idInstruccion":"X5","estado":"EXITOSA"}]`,
			id:      "X5",
			success: true,
			status:  "EXITOSA",
		},
		{
			name:    "lista de um item",
			body:    `[{"idInstruccion":"X6","estado":"REJECTED"}]`,
			id:      "SOMETHING-ELSE",
			success: false,
			status:  "REJECTED",
		},
		{
			name:    "lista sem o id pedido",
			body:    `[{"idInstruccion":"A","estado":"FAILED"},{"idInstruccion":"B","estado":"FAILED"}]`,
			id:      "X7",
			success: true,
		},
		{name: "json quebrado em 2xx", body: `{"estado":`, success: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := DecodeResponse([]byte(tc.body), tc.id)
			require.NotNil(t, resp)
			assert.Equal(t, tc.success, resp.Success)
			assert.Equal(t, tc.status, resp.Status())
			assert.Equal(t, tc.errMessage, resp.ErrorMessage())
			if tc.correlation != "" {
				require.NotNil(t, resp.Data)
				assert.Equal(t, tc.correlation, resp.Data.CorrelationCode)
			}
		})
	}
}
