// Package softuart is an interrupt driven software UART.
//
// One timer interrupt firing at twice the bit rate advances two state
// machines: the RX engine samples the receive pin and assembles frames,
// the TX engine shifts frames out of the transmit FIFO onto the transmit
// pin. A falling-edge interrupt on the receive pin arms frame reception;
// the live timer counter at that instant decides how many half-bit ticks
// to wait so the first data bit is sampled near its center without
// restarting the timer the TX engine also runs on.
//
// Frames are 8N1: one low start bit, eight data bits LSB first, one high
// stop bit. The idle line is high.
//
// Foreground code talks to a Link only through its facade: PutChar, Send,
// DataPending, GetChar, EnableReceive, DisableReceive. Each FIFO has a
// single foreground reader or writer; more than one is not supported.
package softuart
