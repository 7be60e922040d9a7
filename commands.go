// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rcs380

import "fmt"

// Command is a one-byte RC-S380 chipset opcode. The response to a command
// carries opcode+1.
type Command byte

// Initiator commands
const (
	CmdInSetRF       Command = 0x00
	CmdInSetProtocol Command = 0x02
	CmdInCommRF      Command = 0x04
	CmdSwitchRF      Command = 0x06
	CmdInGetProtocol Command = 0x26
	CmdInSetRCT      Command = 0x30
	CmdInGetRCT      Command = 0x32
)

// Target commands
const (
	CmdTgSetRF       Command = 0x40
	CmdTgSetProtocol Command = 0x42
	CmdTgSetAuto     Command = 0x44
	CmdTgSetRFOff    Command = 0x46
	CmdTgCommRF      Command = 0x48
	CmdTgGetProtocol Command = 0x50
	CmdTgSetRCT      Command = 0x60
	CmdTgGetRCT      Command = 0x62
)

// General device commands
const (
	CmdMaintainFlash      Command = 0x10
	CmdResetDevice        Command = 0x12
	CmdGetFirmwareVersion Command = 0x20
	CmdGetPDDataVersion   Command = 0x22
	CmdGetProperty        Command = 0x24
	CmdGetCommandType     Command = 0x28
	CmdSetCommandType     Command = 0x2A
	CmdGetPDData          Command = 0x34
	CmdReadRegister       Command = 0x36
	CmdWriteRegister      Command = 0x38
	CmdDiagnose           Command = 0xF0
)

// KnownCommands lists every opcode with a name, in opcode order
var KnownCommands = []Command{
	CmdInSetRF, CmdInSetProtocol, CmdInCommRF, CmdSwitchRF,
	CmdMaintainFlash, CmdResetDevice,
	CmdGetFirmwareVersion, CmdGetPDDataVersion, CmdGetProperty,
	CmdInGetProtocol, CmdGetCommandType, CmdSetCommandType,
	CmdInSetRCT, CmdInGetRCT, CmdGetPDData, CmdReadRegister, CmdWriteRegister,
	CmdTgSetRF, CmdTgSetProtocol, CmdTgSetAuto, CmdTgSetRFOff, CmdTgCommRF,
	CmdTgGetProtocol, CmdTgSetRCT, CmdTgGetRCT,
	CmdDiagnose,
}

// Name returns the command name and whether the opcode is known
func (c Command) Name() (string, bool) {
	switch c {
	case CmdInSetRF:
		return "InSetRF", true
	case CmdInSetProtocol:
		return "InSetProtocol", true
	case CmdInCommRF:
		return "InCommRF", true
	case CmdSwitchRF:
		return "SwitchRF", true
	case CmdMaintainFlash:
		return "MaintainFlash", true
	case CmdResetDevice:
		return "ResetDevice", true
	case CmdGetFirmwareVersion:
		return "GetFirmwareVersion", true
	case CmdGetPDDataVersion:
		return "GetPDDataVersion", true
	case CmdGetProperty:
		return "GetProperty", true
	case CmdInGetProtocol:
		return "InGetProtocol", true
	case CmdGetCommandType:
		return "GetCommandType", true
	case CmdSetCommandType:
		return "SetCommandType", true
	case CmdInSetRCT:
		return "InSetRCT", true
	case CmdInGetRCT:
		return "InGetRCT", true
	case CmdGetPDData:
		return "GetPDData", true
	case CmdReadRegister:
		return "ReadRegister", true
	case CmdWriteRegister:
		return "WriteRegister", true
	case CmdTgSetRF:
		return "TgSetRF", true
	case CmdTgSetProtocol:
		return "TgSetProtocol", true
	case CmdTgSetAuto:
		return "TgSetAuto", true
	case CmdTgSetRFOff:
		return "TgSetRFOff", true
	case CmdTgCommRF:
		return "TgCommRF", true
	case CmdTgGetProtocol:
		return "TgGetProtocol", true
	case CmdTgSetRCT:
		return "TgSetRCT", true
	case CmdTgGetRCT:
		return "TgGetRCT", true
	case CmdDiagnose:
		return "Diagnose", true
	default:
		return "", false
	}
}

func (c Command) String() string {
	if name, ok := c.Name(); ok {
		return name
	}
	return fmt.Sprintf("Command(0x%02X)", byte(c))
}

// Response returns the opcode a response to c carries
func (c Command) Response() byte {
	return byte(c) + 1
}

// CommandForResponse maps a response opcode back to its command. Response
// opcodes are always odd.
func CommandForResponse(code byte) (Command, bool) {
	if code%2 == 0 {
		return 0, false
	}
	cmd := Command(code - 1)
	_, ok := cmd.Name()
	return cmd, ok
}

// CommandType selects how the chipset interprets commands (SetCommandType)
type CommandType byte

const (
	// CommandTypeRaw enables the raw RF commands (InSetRF, InCommRF, ...)
	CommandTypeRaw CommandType = 0x01
)

// RFState is the argument of SwitchRF
type RFState byte

const (
	// RFOff turns the RF field off
	RFOff RFState = 0x00
	// RFOn turns the RF field on
	RFOn RFState = 0x01
)

func (s RFState) String() string {
	if s == RFOn {
		return "on"
	}
	return "off"
}
