package kernel

import (
	"encoding/json"
	"strings"

	"cosmossdk.io/collections"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
	"github.com/stretchr/testify/assert"

	"github.com/andromedaprotocol/andromeda-kernel/amp"
)

func (suite *kernelTestSuite) query(msg QueryMsg, out any) {
	bz, err := suite.k.Query(suite.ctx, suite.env, msg)
	suite.Require().NoError(err)
	suite.Require().NoError(json.Unmarshal(bz, out))
}

func (suite *kernelTestSuite) Test_OwnerOnlyOperations() {
	t := suite.T()
	chain := "osmosis"
	msgs := []ExecuteMsg{
		{UpsertKeyAddress: &UpsertKeyAddress{Key: VFSKey, Value: "other"}},
		{AssignChannels: &AssignChannels{Chain: chain, KernelAddress: "osmo-kernel"}},
		{UpdateChainName: &UpdateChainName{ChainName: "other"}},
		{SetEnv: &SetEnv{Variable: "key", Value: "value"}},
		{UnsetEnv: &UnsetEnv{Variable: "key"}},
	}
	for _, msg := range msgs {
		_, err := suite.exec("mallory", nil, msg)
		assert.ErrorIs(t, err, ErrUnauthorized)
	}

	var owner OwnerResponse
	suite.query(QueryMsg{Owner: &OwnerQuery{}}, &owner)
	assert.Equal(t, testOwner, owner.Owner)
}

func (suite *kernelTestSuite) Test_UpsertKeyAddress() {
	t := suite.T()
	_, err := suite.exec(testOwner, nil, ExecuteMsg{UpsertKeyAddress: &UpsertKeyAddress{Key: VFSKey, Value: "vfs2"}})
	suite.Require().NoError(err)

	var addr string
	suite.query(QueryMsg{KeyAddress: &KeyAddressQuery{Key: VFSKey}}, &addr)
	assert.Equal(t, "vfs2", addr)

	_, err = suite.k.Query(suite.ctx, suite.env, QueryMsg{KeyAddress: &KeyAddressQuery{Key: "missing"}})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = suite.exec(testOwner, nil, ExecuteMsg{UpsertKeyAddress: &UpsertKeyAddress{Key: VFSKey, Value: ""}})
	assert.Error(t, err)
}

func (suite *kernelTestSuite) Test_AssignChannelsReplacesStaleChannels() {
	t := suite.T()
	suite.assignOsmosis()

	direct := "channel-5"
	_, err := suite.exec(testOwner, nil, ExecuteMsg{AssignChannels: &AssignChannels{
		DirectChannelID: &direct,
		Chain:           "osmosis",
		KernelAddress:   "osmo-kernel-2",
	}})
	suite.Require().NoError(err)

	_, err = suite.k.state.ChannelToChain.Get(suite.ctx, "channel-0")
	assert.ErrorIs(t, err, collections.ErrNotFound)
	chain, err := suite.k.state.ChannelToChain.Get(suite.ctx, "channel-5")
	suite.Require().NoError(err)
	assert.Equal(t, "osmosis", chain)
	chain, err = suite.k.state.ChannelToChain.Get(suite.ctx, "channel-1")
	suite.Require().NoError(err)
	assert.Equal(t, "osmosis", chain)

	var info ChannelInfoResponse
	suite.query(QueryMsg{ChannelInfo: &ChannelInfoQuery{Chain: "osmosis"}}, &info)
	suite.Require().NotNil(info.Direct)
	suite.Require().NotNil(info.Ics20)
	assert.Equal(t, "channel-5", *info.Direct)
	assert.Equal(t, "channel-1", *info.Ics20)
	assert.Equal(t, "osmo-kernel-2", info.KernelAddress)
	assert.Equal(t, []string{}, info.SupportedModules)

	bz, err := suite.k.Query(suite.ctx, suite.env, QueryMsg{ChannelInfo: &ChannelInfoQuery{Chain: "juno"}})
	suite.Require().NoError(err)
	assert.Equal(t, "null", string(bz))
}

func (suite *kernelTestSuite) Test_AssignChannelsSupportedModules() {
	t := suite.T()
	suite.assignOsmosis()

	bz, err := suite.k.Query(suite.ctx, suite.env, QueryMsg{ChannelInfo: &ChannelInfoQuery{Chain: "osmosis"}})
	suite.Require().NoError(err)
	assert.Contains(t, string(bz), `"supported_modules":[]`)

	res, err := suite.exec(testOwner, nil, ExecuteMsg{AssignChannels: &AssignChannels{
		Chain:            "osmosis",
		KernelAddress:    "osmo-kernel",
		SupportedModules: []string{"ics20", "wasm"},
	}})
	suite.Require().NoError(err)
	assert.Equal(t, "ics20,wasm", attrValue(res, "supported_modules"))

	var info ChannelInfoResponse
	suite.query(QueryMsg{ChannelInfo: &ChannelInfoQuery{Chain: "osmosis"}}, &info)
	assert.Equal(t, []string{"ics20", "wasm"}, info.SupportedModules)
	suite.Require().NotNil(info.Direct)
	assert.Equal(t, "channel-0", *info.Direct)

	_, err = suite.exec(testOwner, nil, ExecuteMsg{AssignChannels: &AssignChannels{
		Chain:         "osmosis",
		KernelAddress: "osmo-kernel-2",
	}})
	suite.Require().NoError(err)

	var kept ChannelInfoResponse
	suite.query(QueryMsg{ChannelInfo: &ChannelInfoQuery{Chain: "osmosis"}}, &kept)
	assert.Equal(t, []string{"ics20", "wasm"}, kept.SupportedModules)
	assert.Equal(t, "osmo-kernel-2", kept.KernelAddress)
}

func (suite *kernelTestSuite) Test_UpdateChainName() {
	t := suite.T()
	_, err := suite.exec(testOwner, nil, ExecuteMsg{UpdateChainName: &UpdateChainName{ChainName: "andromeda-2"}})
	suite.Require().NoError(err)

	var name string
	suite.query(QueryMsg{ChainName: &ChainNameQuery{}}, &name)
	assert.Equal(t, "andromeda-2", name)

	_, err = suite.exec(testOwner, nil, ExecuteMsg{UpdateChainName: &UpdateChainName{}})
	assert.ErrorIs(t, err, ErrInvalidMsg)
}

func (suite *kernelTestSuite) Test_SetEnv() {
	t := suite.T()
	res, err := suite.exec(testOwner, nil, ExecuteMsg{SetEnv: &SetEnv{Variable: "api_url", Value: "https://example.com"}})
	suite.Require().NoError(err)
	assert.Equal(t, "API_URL", attrValue(res, "variable"))

	var env EnvResponse
	suite.query(QueryMsg{GetEnv: &GetEnvQuery{Variable: "Api_Url"}}, &env)
	suite.Require().NotNil(env.Value)
	assert.Equal(t, "https://example.com", *env.Value)

	invalid := []SetEnv{
		{Variable: "", Value: "x"},
		{Variable: "bad-name", Value: "x"},
		{Variable: "has space", Value: "x"},
		{Variable: strings.Repeat("a", 101), Value: "x"},
		{Variable: "ok", Value: ""},
		{Variable: "ok", Value: strings.Repeat("v", 101)},
	}
	for _, msg := range invalid {
		_, err := suite.exec(testOwner, nil, ExecuteMsg{SetEnv: &msg})
		assert.ErrorIs(t, err, ErrInvalidEnvironmentVariable, msg.Variable)
	}

	_, err = suite.exec(testOwner, nil, ExecuteMsg{SetEnv: &SetEnv{Variable: strings.Repeat("a", 100), Value: "x"}})
	assert.NoError(t, err)
}

func (suite *kernelTestSuite) Test_UnsetEnv() {
	t := suite.T()
	_, err := suite.exec(testOwner, nil, ExecuteMsg{UnsetEnv: &UnsetEnv{Variable: "missing"}})
	assert.ErrorIs(t, err, ErrEnvironmentVariableNotFound)

	_, err = suite.exec(testOwner, nil, ExecuteMsg{SetEnv: &SetEnv{Variable: "KEY", Value: "v"}})
	suite.Require().NoError(err)
	_, err = suite.exec(testOwner, nil, ExecuteMsg{UnsetEnv: &UnsetEnv{Variable: "key"}})
	suite.Require().NoError(err)

	var env EnvResponse
	suite.query(QueryMsg{GetEnv: &GetEnvQuery{Variable: "KEY"}}, &env)
	assert.Nil(t, env.Value)
}

func (suite *kernelTestSuite) Test_RegisterUserCrossChain() {
	t := suite.T()
	suite.assignOsmosis()
	msg := ExecuteMsg{Internal: &InternalMsg{RegisterUserCrossChain: &RegisterUserCrossChain{
		Username: "al",
		Address:  "osmo1alice",
		Chain:    "osmosis",
	}}}

	_, err := suite.exec("alice", nil, msg)
	assert.ErrorIs(t, err, ErrUnauthorized)

	res, err := suite.exec("vfs", nil, msg)
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)
	send := res.Messages[0].Msg.IBC.SendPacket
	suite.Require().NotNil(send)
	assert.Equal(t, "channel-0", send.ChannelID)

	packet, err := UnmarshalIbcExecuteMsg(send.Data)
	suite.Require().NoError(err)
	suite.Require().NotNil(packet.RegisterUsername)
	assert.Equal(t, RegisterUsername{Username: "al", Address: "osmo1alice"}, *packet.RegisterUsername)

	msg.Internal.RegisterUserCrossChain.Chain = "juno"
	_, err = suite.exec("vfs", nil, msg)
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func (suite *kernelTestSuite) Test_CreateLocal() {
	t := suite.T()
	init := []byte(`{"recipients":[]}`)

	res, err := suite.exec("alice", nil, ExecuteMsg{Create: &Create{AdoType: "splitter", Msg: init}})
	suite.Require().NoError(err)
	suite.Require().Len(res.Messages, 1)
	sub := res.Messages[0]
	assert.Equal(t, ReplyCreateADO, sub.ID)
	assert.Equal(t, wasmvmtypes.ReplyAlways, sub.ReplyOn)
	inst := sub.Msg.Wasm.Instantiate
	suite.Require().NotNil(inst)
	assert.Equal(t, uint64(8), inst.CodeID)
	assert.Equal(t, "alice", inst.Admin)
	assert.Equal(t, "ADO:splitter", inst.Label)
	assert.JSONEq(t, string(init), string(inst.Msg))

	reply, err := suite.k.Reply(suite.ctx, suite.env, wasmvmtypes.Reply{
		ID: ReplyCreateADO,
		Result: wasmvmtypes.SubMsgResult{Ok: &wasmvmtypes.SubMsgResponse{Events: []wasmvmtypes.Event{{
			Type:       "instantiate",
			Attributes: wasmvmtypes.EventAttributes{{Key: "_contract_address", Value: "splitter1"}},
		}}}},
	})
	suite.Require().NoError(err)
	assert.Equal(t, "alice", attrValue(reply, "owner"))
	assert.Equal(t, "splitter1", attrValue(reply, "ado_address"))
	_, err = suite.k.state.ADOOwner.Get(suite.ctx)
	assert.ErrorIs(t, err, collections.ErrNotFound)

	_, err = suite.exec("alice", nil, ExecuteMsg{Create: &Create{AdoType: "unknown", Msg: init}})
	assert.ErrorIs(t, err, ErrGeneric)
}

func (suite *kernelTestSuite) Test_CreateLocalWithOwnerAndSameChain() {
	t := suite.T()
	owner := amp.AndrAddr("bob")
	chain := "andromeda"

	res, err := suite.exec("alice", nil, ExecuteMsg{Create: &Create{AdoType: "splitter", Msg: []byte(`{}`), Owner: &owner, Chain: &chain}})
	suite.Require().NoError(err)
	assert.Equal(t, "bob", res.Messages[0].Msg.Wasm.Instantiate.Admin)
}

func (suite *kernelTestSuite) Test_CreateRemote() {
	t := suite.T()
	suite.assignOsmosis()
	owner := amp.AndrAddr("osmo1bob")
	chain := "osmosis"
	msg := ExecuteMsg{Create: &Create{AdoType: "splitter", Msg: []byte(`{}`), Owner: &owner, Chain: &chain}}

	_, err := suite.exec("alice", nil, msg)
	assert.ErrorIs(t, err, ErrCrossChainComponentsCurrentlyDisabled)

	suite.k.opts.CrossChainCreate = true
	res, err := suite.exec("alice", nil, msg)
	suite.Require().NoError(err)
	send := res.Messages[0].Msg.IBC.SendPacket
	suite.Require().NotNil(send)
	assert.Equal(t, "channel-0", send.ChannelID)

	packet, err := UnmarshalIbcExecuteMsg(send.Data)
	suite.Require().NoError(err)
	suite.Require().NotNil(packet.CreateADO)
	assert.Equal(t, "splitter", packet.CreateADO.AdoType)
	assert.Equal(t, owner, packet.CreateADO.Owner)

	msg.Create.Owner = nil
	_, err = suite.exec("alice", nil, msg)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func (suite *kernelTestSuite) Test_VerifyAddressQuery() {
	t := suite.T()
	var ok bool
	suite.query(QueryMsg{VerifyAddress: &VerifyAddressQuery{Address: "adoC"}}, &ok)
	assert.True(t, ok)
	suite.query(QueryMsg{VerifyAddress: &VerifyAddressQuery{Address: "contractB"}}, &ok)
	assert.False(t, ok)
	suite.query(QueryMsg{VerifyAddress: &VerifyAddressQuery{Address: "alice"}}, &ok)
	assert.False(t, ok)
}

func (suite *kernelTestSuite) Test_UnknownMessages() {
	_, err := suite.exec("alice", nil, ExecuteMsg{})
	assert.ErrorIs(suite.T(), err, ErrInvalidMsg)
	_, err = suite.k.Query(suite.ctx, suite.env, QueryMsg{})
	assert.ErrorIs(suite.T(), err, ErrInvalidMsg)
	_, err = suite.k.ExecuteRaw(suite.ctx, suite.env, wasmvmtypes.MessageInfo{Sender: "alice"}, []byte(`{"unknown":{}}`))
	assert.ErrorIs(suite.T(), err, ErrInvalidMsg)
}
